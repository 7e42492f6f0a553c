package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", envOr("RELAY_ADDR", "http://localhost:3000"), "Relay HTTP address")
	flag.Parse()

	ch := newCommandHandler(*addr, &http.Client{Timeout: 10 * time.Second})

	fmt.Printf("🔹 Connected to relay at %s. Type HELP for commands.\n", *addr)
	fmt.Println("")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			break
		}
		fmt.Println(ch.HandleCommand(line))
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
