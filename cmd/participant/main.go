// Command participant runs the 2PC participant side of the commit
// protocol (spec section 6, "CLI"): one positional <port> and <node_id>
// originally, generalized here to flags per SPEC_FULL.md's AMBIENT STACK.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/mnohosten/collage2pc/pkg/participant"
	"github.com/mnohosten/collage2pc/pkg/transport"
)

func main() {
	config := participant.DefaultConfig()

	nodeID := flag.String("node-id", "", "This participant's node id (required)")
	host := flag.String("host", config.Host, "Listen host")
	port := flag.Int("port", config.Port, "Listen port")
	adminPort := flag.Int("admin-port", config.AdminPort, "Admin HTTP port (/health, /status, /metrics)")
	logDir := flag.String("log-dir", config.LogDir, "Lock-transition log directory")
	sourceDir := flag.String("source-dir", config.SourceDir, "Directory source files live in (default: working directory)")
	autoApprove := flag.Bool("auto-approve", false, "Skip the interactive operator prompt and approve every commit_query")
	flag.Parse()

	if *nodeID == "" {
		fmt.Fprintln(os.Stderr, "participant: -node-id is required")
		os.Exit(1)
	}

	config.NodeID = *nodeID
	config.Host = *host
	config.Port = *port
	config.AdminPort = *adminPort
	config.LogDir = *logDir
	config.SourceDir = *sourceDir

	oracle := participant.AlwaysApprove
	if !*autoApprove {
		oracle = promptOracle
	}

	network, err := transport.NewTCPNetwork()
	if err != nil {
		fmt.Fprintf(os.Stderr, "participant: %v\n", err)
		os.Exit(1)
	}
	defer network.Close()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	p := participant.New(config, network, oracle, logger)

	if err := p.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "participant: %v\n", err)
		os.Exit(1)
	}

	logger.Printf("[participant %s] admin surface on %s:%d", config.NodeID, config.Host, config.AdminPort)
	if err := http.ListenAndServe(fmt.Sprintf("%s:%d", config.Host, config.AdminPort), p.AdminRouter()); err != nil {
		fmt.Fprintf(os.Stderr, "participant: admin server: %v\n", err)
		os.Exit(1)
	}
}

// promptOracle is the default operator decision oracle (spec section 6):
// it prints the candidate file list to stdout and reads a y/n answer from
// stdin. Image decoding/display is out of scope (spec section 1), so only
// the file names are shown.
func promptOracle(_ []byte, files []string) bool {
	fmt.Printf("Approve commit consuming %s? [y/N] ", strings.Join(files, ", "))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}
