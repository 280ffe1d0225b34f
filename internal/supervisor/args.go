package supervisor

// Args builds the worker command line: port selection first, then extra.
func Args(extra []string, tcpPorts, udpPorts string) []string {
	args := make([]string, 0, len(extra)+2)
	args = append(args, "--wf-tcp="+tcpPorts, "--wf-udp="+udpPorts)
	return append(args, extra...)
}
