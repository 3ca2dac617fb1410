package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/wbrown/delta-datalog/datalog/storage"
)

func main() {
	nodes := flag.Int("nodes", 1000, "number of distinct node identifiers")
	edges := flag.Int("edges", 5000, "number of edges to generate")
	labels := flag.String("labels", "e", "comma-separated relation labels to spread edges across")
	seed := flag.Int64("seed", 1, "random seed")
	out := flag.String("out", "test.edges", "edge file to write")
	journalPath := flag.String("journal", "", "also append the edges to a journal at this path")
	flag.Parse()

	var labelList []string
	for _, l := range strings.Split(*labels, ",") {
		if l = strings.TrimSpace(l); l != "" {
			labelList = append(labelList, l)
		}
	}
	if *nodes <= 0 || *edges < 0 || len(labelList) == 0 {
		fmt.Fprintln(os.Stderr, "Need -nodes > 0, -edges >= 0 and at least one label")
		os.Exit(1)
	}

	fmt.Printf("Building test graph: %s\n", *out)
	fmt.Printf("  Nodes:  %d\n", *nodes)
	fmt.Printf("  Edges:  %d\n", *edges)
	fmt.Printf("  Labels: %s\n", strings.Join(labelList, ", "))
	fmt.Printf("  Seed:   %d\n", *seed)
	fmt.Println()

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create edge file: %v\n", err)
		os.Exit(1)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# random graph: %d nodes, %d edges, seed %d\n", *nodes, *edges, *seed)

	rng := rand.New(rand.NewSource(*seed))
	var entries []storage.Entry
	for i := 0; i < *edges; i++ {
		src := rng.Int63n(int64(*nodes))
		dst := rng.Int63n(int64(*nodes))
		label := labelList[rng.Intn(len(labelList))]
		fmt.Fprintf(w, "%d %d %s\n", src, dst, label)
		if *journalPath != "" {
			entries = append(entries, storage.Entry{Op: storage.OpInsert, Label: label, Src: src, Dst: dst})
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write edge file: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close edge file: %v\n", err)
		os.Exit(1)
	}

	if *journalPath != "" {
		journal, err := storage.OpenJournal(*journalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
			os.Exit(1)
		}
		if err := journal.Append(entries); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to append to journal: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Journal now holds %d entries\n", journal.Len())
		if err := journal.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close journal: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("✅ Done! Load it with:")
	fmt.Printf("   delta-datalog -rules your.rules -edges %s\n", *out)
}
