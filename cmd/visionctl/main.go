// Command visionctl drives a running companion daemon's control plane
// from the command line: lifecycle (start, stop), overlay operations
// (expand, collapse, capture, reset) and health.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	port := os.Getenv("CONTROL_PORT")
	if port == "" {
		port = "8090"
	}
	addr := flag.String("addr", "http://localhost:"+port, "control plane address")
	user := flag.String("user", "", "user to bind on start")
	flag.Parse()

	var err error
	switch flag.Arg(0) {
	case "start":
		err = post(*addr+"/start-vision", map[string]string{"mobile": *user})
	case "stop":
		err = post(*addr+"/stop-vision", nil)
	case "expand", "collapse", "capture", "reset":
		err = post(*addr+"/overlay/"+flag.Arg(0), nil)
	case "health":
		err = get(*addr + "/healthz")
	default:
		fmt.Fprintln(os.Stderr, "usage: visionctl [-addr URL] [-user ID] start|stop|expand|collapse|capture|reset|health")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "visionctl:", err)
		os.Exit(1)
	}
}

func post(url string, body map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	resp, err := http.Post(url, "application/json", reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return print(resp)
}

func get(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return print(resp)
}

func print(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	fmt.Println(string(bytes.TrimSpace(raw)))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
