// heapctl exercises the heapkit allocator from the command line: it hosts the
// kernel heap on a simulated paging collaborator and runs workloads against
// it, printing layout information and allocation statistics.
package main

func main() {
	Execute()
}
