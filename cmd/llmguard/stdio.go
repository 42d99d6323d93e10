package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jonwraymond/llmguard/jsonrpc"
	"github.com/jonwraymond/llmguard/observe"
	"github.com/jonwraymond/llmguard/ratelimit"
)

// handler is the part of the gateway the stdio loop needs.
type handler interface {
	Handle(ctx context.Context, raw []byte, client ratelimit.ClientIdentifier) *jsonrpc.Response
}

// lineSlack is the room allowed beyond the request size limit so that an
// oversized request still reaches the validator and gets a reply.
const lineSlack = 64 * 1024

// serveStdio reads one JSON-RPC request per line from in and writes one
// response per line to out. Requests are handled in order. It returns nil
// at end of input or when ctx ends.
func serveStdio(ctx context.Context, h handler, in io.Reader, out io.Writer,
	client ratelimit.ClientIdentifier, maxRequestSize int, logger observe.Logger) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxRequestSize+lineSlack)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- bytes.Clone(line):
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read stdin: %w", err)
					}
				default:
				}
				logger.Info(ctx, "stdin closed, shutting down")
				return nil
			}

			resp := h.Handle(ctx, line, client)
			if resp == nil {
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("write stdout: %w", err)
			}
		}
	}
}
