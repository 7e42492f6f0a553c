package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/downfa11-org/go-relay/pkg/types"
)

const helpText = `Commands:
  SEND <author> <content>   publish a message
  RECENT [n]                show the n most recent messages
  LAG                       show consumer group lag per partition
  HELP                      show this help
  EXIT                      quit`

type commandHandler struct {
	base   string
	client *http.Client
}

func newCommandHandler(base string, client *http.Client) *commandHandler {
	return &commandHandler{base: strings.TrimRight(base, "/"), client: client}
}

func (h *commandHandler) HandleCommand(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	switch strings.ToUpper(fields[0]) {
	case "HELP":
		return helpText
	case "SEND":
		if len(fields) < 3 {
			return "ERROR: usage SEND <author> <content>"
		}
		rest := strings.TrimSpace(strings.TrimSpace(line)[len(fields[0]):])
		content := strings.TrimSpace(rest[len(fields[1]):])
		return h.send(fields[1], content)
	case "RECENT":
		limit := 10
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				return "ERROR: RECENT expects a positive number"
			}
			limit = n
		}
		return h.recent(limit)
	case "LAG":
		return h.lag()
	default:
		return fmt.Sprintf("ERROR: unknown command %q (try HELP)", fields[0])
	}
}

func (h *commandHandler) send(author, content string) string {
	body, _ := json.Marshal(map[string]string{"author": author, "content": content})
	resp, err := h.client.Post(h.base+"/api/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	if err := decode(resp, &out); err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("ERROR: %s", out.Error)
	}
	return fmt.Sprintf("OK id=%s", out.ID)
}

func (h *commandHandler) recent(limit int) string {
	resp, err := h.client.Get(fmt.Sprintf("%s/api/messages?limit=%d", h.base, limit))
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Messages []types.Message `json:"messages"`
	}
	if err := decode(resp, &out); err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if len(out.Messages) == 0 {
		return "(no messages)"
	}

	var b strings.Builder
	for _, m := range out.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Time().Format(time.TimeOnly), m.Author, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *commandHandler) lag() string {
	resp, err := h.client.Get(h.base + "/api/lag")
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Group      string                    `json:"group"`
		Topic      string                    `json:"topic"`
		TotalLag   int64                     `json:"total_lag"`
		Partitions []types.PartitionPosition `json:"partitions"`
	}
	if err := decode(resp, &out); err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "group=%s topic=%s total_lag=%d", out.Group, out.Topic, out.TotalLag)
	for _, p := range out.Partitions {
		if lag, ok := p.Lag(); ok {
			fmt.Fprintf(&b, "\n  partition %d: committed=%d hwm=%d lag=%d", p.Partition, p.CommittedOffset, p.HighWaterMark, lag)
		} else {
			fmt.Fprintf(&b, "\n  partition %d: committed=- hwm=%d", p.Partition, p.HighWaterMark)
		}
	}
	return b.String()
}

func decode(resp *http.Response, v any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
