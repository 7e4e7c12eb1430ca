// Command plotter plans drawings and plots them on an EBB pen plotter.
package main

func main() {
	Execute()
}
