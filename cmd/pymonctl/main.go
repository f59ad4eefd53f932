package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const usage = `pymonctl <command> [args]

Commands:
  add <url> [name]     register a target and run a first check
  remove <id>          unregister and delete a target
  status               live status of all registered targets
  check <id>           run an out-of-band check now
  logs <id>            recent check results for a target
  alerts <id>          recent alerts for a target
  resolve <alert-id>   mark an alert resolved

Environment:
  API_BASE  server base URL (default http://localhost:8080)
  API_KEY   key sent as X-API-Key
`

type client struct {
	base string
	key  string
}

func (c client) do(method, path string, body any) ([]byte, int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return out, resp.StatusCode, err
}

func (c client) print(method, path string, body any) {
	out, code, err := c.do(method, path, body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if code >= 400 {
		fmt.Fprintf(os.Stderr, "server returned %d: %s\n", code, strings.TrimSpace(string(out)))
		os.Exit(1)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		fmt.Println("ok")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		fmt.Println(string(out))
		return
	}
	fmt.Println(pretty.String())
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	c := client{base: os.Getenv("API_BASE"), key: os.Getenv("API_KEY")}
	if c.base == "" {
		c.base = "http://localhost:8080"
	}

	cmd, args := os.Args[1], os.Args[2:]
	need := func(n int, what string) {
		if len(args) < n {
			fmt.Fprintf(os.Stderr, "usage: pymonctl %s %s\n", cmd, what)
			os.Exit(2)
		}
	}

	switch cmd {
	case "add":
		need(1, "<url> [name]")
		raw := args[0]
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			fmt.Fprintln(os.Stderr, "invalid url:", args[0])
			os.Exit(2)
		}
		payload := map[string]string{"url": raw}
		if len(args) > 1 {
			payload["name"] = args[1]
		}
		c.print(http.MethodPost, "/api/targets", payload)
	case "remove":
		need(1, "<id>")
		c.print(http.MethodDelete, "/api/targets/"+args[0], nil)
	case "status":
		c.print(http.MethodGet, "/api/status", nil)
	case "check":
		need(1, "<id>")
		c.print(http.MethodPost, "/api/targets/"+args[0]+"/check", nil)
	case "logs":
		need(1, "<id>")
		c.print(http.MethodGet, "/api/targets/"+args[0]+"/logs?limit=20", nil)
	case "alerts":
		need(1, "<id>")
		c.print(http.MethodGet, "/api/targets/"+args[0]+"/alerts?limit=20", nil)
	case "resolve":
		need(1, "<alert-id>")
		c.print(http.MethodPost, "/api/alerts/"+args[0]+"/resolve", nil)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
