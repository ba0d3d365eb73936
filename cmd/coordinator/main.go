// Command coordinator runs the 2PC coordinator side of the commit
// protocol (spec section 6, "Coordinator entry point" and "CLI").
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/mnohosten/collage2pc/pkg/coordinator"
	"github.com/mnohosten/collage2pc/pkg/transport"
)

// participantList collects repeated -participant node=addr flags into a
// map, the same repeated-flag idiom laura-db's CLI tools use for
// multi-valued options.
type participantList map[string]string

func (p participantList) String() string {
	pairs := make([]string, 0, len(p))
	for node, addr := range p {
		pairs = append(pairs, node+"="+addr)
	}
	return strings.Join(pairs, ",")
}

func (p participantList) Set(value string) error {
	node, addr, ok := strings.Cut(value, "=")
	if !ok || node == "" || addr == "" {
		return fmt.Errorf("expected node=host:port, got %q", value)
	}
	p[node] = addr
	return nil
}

func main() {
	config := coordinator.DefaultConfig()

	host := flag.String("host", config.Host, "Listen host")
	port := flag.Int("port", config.Port, "Listen port")
	adminPort := flag.Int("admin-port", config.AdminPort, "Admin HTTP port (/health, /status, /metrics)")
	logDir := flag.String("log-dir", config.LogDir, "Commit log directory")
	participants := make(participantList)
	flag.Var(participants, "participant", "Participant node in node_id=host:port form; may be repeated")
	flag.Parse()

	if len(participants) == 0 {
		fmt.Fprintln(os.Stderr, "coordinator: at least one -participant is required")
		os.Exit(1)
	}

	config.Host = *host
	config.Port = *port
	config.AdminPort = *adminPort
	config.LogDir = *logDir
	config.Participants = participants

	network, err := transport.NewTCPNetwork()
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}
	defer network.Close()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	c := coordinator.New(config, network, logger)

	if err := c.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}

	logger.Printf("[coordinator] admin surface on %s:%d", config.Host, config.AdminPort)
	if err := http.ListenAndServe(fmt.Sprintf("%s:%d", config.Host, config.AdminPort), c.AdminRouter()); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: admin server: %v\n", err)
		os.Exit(1)
	}
}
