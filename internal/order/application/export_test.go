package application

import "time"

func SetNumberer(a *Assembler, fn func(time.Time) string) { a.number = fn }
