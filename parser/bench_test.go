package parser_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dcarrero/mboxshell-go/config"
	"github.com/dcarrero/mboxshell-go/parser"
)

// generateMbox builds a synthetic archive of n small messages, used to
// exercise the streaming parser at a size representative of a real
// export without checking a multi-megabyte fixture into the repository.
func generateMbox(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "From user%d@example.com Mon Jan 1 00:00:00 2024\n", i)
		fmt.Fprintf(&b, "From: user%d@example.com\n", i)
		fmt.Fprintf(&b, "To: dest@example.com\n")
		fmt.Fprintf(&b, "Subject: message %d\n", i)
		fmt.Fprintf(&b, "Date: Mon, 1 Jan 2024 00:00:00 +0000\n")
		b.WriteString("\n")
		fmt.Fprintf(&b, "Body text for message %d, padded for realism. %s\n", i, strings.Repeat("x", 200))
		b.WriteString("\n")
	}
	return b.String()
}

func benchArchive(b *testing.B, n int) string {
	b.Helper()
	path := filepath.Join(b.TempDir(), "bench.mbox")
	if err := os.WriteFile(path, []byte(generateMbox(n)), 0o644); err != nil {
		b.Fatal(err)
	}
	return path
}

func BenchmarkScanHeaders(b *testing.B) {
	path := benchArchive(b, 5000)
	cfg := config.Default()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := parser.Open(path, cfg)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.ScanHeaders(func(offset, length uint64, header []byte) bool {
			return true
		}, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkScanFull(b *testing.B) {
	path := benchArchive(b, 5000)
	cfg := config.Default()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := parser.Open(path, cfg)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.ScanFull(func(offset uint64, raw []byte) bool {
			return true
		}, nil); err != nil {
			b.Fatal(err)
		}
	}
}
