// Command examplemodule is built with -buildmode=c-shared into a library
// exporting the same entry points as example.c.
package main

import "C"

var name = C.CString("ExampleModule")

//export GetName
func GetName() *C.char {
	return name
}

//export Add
func Add(a, b C.int) C.int {
	return a + b
}

func main() {}
