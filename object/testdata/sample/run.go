package sample

import "strconv"

var calls int

func Run() string {
	calls++
	return "sample " + strconv.Itoa(calls)
}

func Add(a, b int) int {
	return a + b
}
