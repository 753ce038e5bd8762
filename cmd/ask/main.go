// Command ask is an interactive client for the question endpoint. It reads
// questions from stdin and prints answers with their citations and
// confidence.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/FilingLensAI/filinglens-mvp/engine/rag"
)

func main() {
	apiURL := flag.String("api", envOr("FILINGLENS_API", "http://localhost:8080"), "API base URL")
	flag.Parse()

	client := &http.Client{Timeout: 90 * time.Second}

	// One-shot mode: question given as arguments.
	if flag.NArg() > 0 {
		if err := ask(client, *apiURL, strings.Join(flag.Args(), " ")); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("filinglens — ask about ingested filings (ctrl-d to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if err := ask(client, *apiURL, question); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func ask(client *http.Client, apiURL, question string) error {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return err
	}

	resp, err := client.Post(apiURL+"/api/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var answer rag.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}

	fmt.Println()
	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println()
		for _, s := range answer.Sources {
			if s.DocID != "" {
				fmt.Printf("  [%d] %s %s p.%d\n", s.Ref, s.DocID, s.Section, s.Page)
			} else {
				fmt.Printf("  [%d] %s\n", s.Ref, s.Detail)
			}
		}
	}
	fmt.Printf("\nconfidence: %s", answer.Confidence)
	if answer.FellBack {
		fmt.Print(" (fallback path)")
	}
	fmt.Println()
	fmt.Println()
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
