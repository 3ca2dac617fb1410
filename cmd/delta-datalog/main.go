package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/wbrown/delta-datalog/datalog"
	"github.com/wbrown/delta-datalog/datalog/annotations"
	"github.com/wbrown/delta-datalog/datalog/parser"
	"github.com/wbrown/delta-datalog/datalog/storage"
)

func main() {
	var rulesPath string
	var edgesPath string
	var journalPath string
	var workers int
	var degrees bool
	var interactive bool
	var verbose bool
	var help bool

	flag.StringVar(&rulesPath, "rules", "", "rules file defining the query")
	flag.StringVar(&edgesPath, "edges", "", "edge file to load before the first sync")
	flag.StringVar(&journalPath, "journal", "", "journal directory; replayed on start, appended on sync")
	flag.IntVar(&workers, "workers", 1, "number of parallel workers")
	flag.BoolVar(&degrees, "degrees", false, "maintain per-node degree counts")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show engine annotations)")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [rules_file]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "An incremental Datalog engine over labeled edge relations.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -rules tc.rules -edges graph.edges              # load, sync, print relations\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -rules tc.rules -edges graph.edges -journal tc.journal  # seed a journal\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -rules tc.rules -journal tc.journal -i          # replay and go interactive\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -rules tc.rules -edges graph.edges -degrees -workers 4 -verbose\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	// Check for positional argument
	if rulesPath == "" && flag.NArg() > 0 {
		rulesPath = flag.Arg(0)
	}
	if rulesPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	rulesFile, err := os.Open(rulesPath)
	if err != nil {
		log.Fatalf("Failed to open rules: %v", err)
	}
	q, err := parser.ParseRules(rulesFile)
	rulesFile.Close()
	if err != nil {
		log.Fatalf("Failed to parse rules: %v", err)
	}

	// Create annotation handler if verbose mode
	var handler annotations.Handler
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		handler = annotations.Handler(formatter.Handle)
	}

	eng, err := datalog.NewEngine(q, datalog.EngineOptions{
		Workers: workers,
		Degrees: degrees,
		Handler: handler,
	})
	if err != nil {
		log.Fatalf("Failed to compile query: %v", err)
	}

	var journal *storage.Journal
	if journalPath != "" {
		journal, err = storage.OpenJournal(journalPath)
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer journal.Close()
		if err := replayJournal(eng, journal); err != nil {
			log.Fatalf("Failed to replay journal: %v", err)
		}
	}

	if edgesPath != "" {
		if err := loadEdges(eng, journal, edgesPath); err != nil {
			log.Fatalf("Failed to load edges: %v", err)
		}
	}

	ctx := context.Background()
	if err := eng.Sync(ctx); err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	if interactive {
		runInteractive(ctx, eng, journal)
	} else {
		printRelations(eng, degrees)
	}
}

// replayJournal stages every logged mutation into the engine.
func replayJournal(eng *datalog.Engine, journal *storage.Journal) error {
	start := time.Now()
	n := 0
	err := journal.Replay(func(en storage.Entry) error {
		rel, err := eng.Relation(en.Label)
		if err != nil {
			return fmt.Errorf("journal entry %d: %w", n, err)
		}
		e := datalog.Edge{Src: en.Src, Dst: en.Dst}
		switch en.Op {
		case storage.OpInsert:
			rel.Insert(e)
		case storage.OpRemove:
			rel.Remove(e)
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}
	eng.Annotations().AddTiming(annotations.JournalReplayed, start, map[string]interface{}{
		"entries": n,
	})
	return nil
}

// loadEdges stages an edge file and, when a journal is open, appends the
// load so later runs replay it.
func loadEdges(eng *datalog.Engine, journal *storage.Journal, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	edges, err := parser.ParseEdges(f)
	if err != nil {
		return err
	}
	if err := eng.Load(edges); err != nil {
		return err
	}
	if journal != nil {
		entries := make([]storage.Entry, len(edges))
		for i, le := range edges {
			entries[i] = storage.Entry{Op: storage.OpInsert, Label: le.Label, Src: le.Src, Dst: le.Dst}
		}
		if err := journal.Append(entries); err != nil {
			return err
		}
	}
	return nil
}

// printRelations prints every relation's contents, and degree counts when
// they are maintained.
func printRelations(eng *datalog.Engine, degrees bool) {
	tf := datalog.NewTableFormatter()
	for _, name := range eng.Relations() {
		rel, err := eng.Relation(name)
		if err != nil {
			continue
		}
		fmt.Println(tf.FormatEdges(name, rel.Read()))
		if degrees {
			for _, dir := range []datalog.Direction{datalog.Forward, datalog.Reverse} {
				degs, err := rel.Degrees(dir)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					break
				}
				fmt.Println(tf.FormatDegrees(name, dir, degs))
			}
		}
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  insert <relation> <src> <dst>  - stage an edge insertion")
	fmt.Println("  remove <relation> <src> <dst>  - stage an edge removal")
	fmt.Println("  sync                           - commit staged mutations as one epoch")
	fmt.Println("  read <relation>                - print a relation's contents")
	fmt.Println("  degrees <relation> [out|in]    - print per-node degree counts")
	fmt.Println("  relations                      - list relation names")
	fmt.Println("  help                           - show this help")
	fmt.Println("  quit                           - exit")
	fmt.Println()
}

func runInteractive(ctx context.Context, eng *datalog.Engine, journal *storage.Journal) {
	fmt.Println("=== Delta Datalog Interactive Mode ===")
	printHelp()

	prompt := color.New(color.FgCyan, color.Bold)
	tf := datalog.NewTableFormatter()
	scanner := bufio.NewScanner(os.Stdin)

	// Mutations staged since the last sync, held back from the journal
	// until the epoch that commits them succeeds.
	var pending []storage.Entry

	for {
		prompt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			if len(pending) > 0 {
				fmt.Printf("Discarding %d unsynced mutations\n", len(pending))
			}
			return

		case "help":
			printHelp()

		case "relations":
			for _, name := range eng.Relations() {
				fmt.Println(name)
			}

		case "insert", "remove":
			if len(fields) != 4 {
				fmt.Printf("Expected: %s <relation> <src> <dst>\n", fields[0])
				continue
			}
			rel, err := eng.Relation(fields[1])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			src, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				fmt.Printf("Bad source node %q\n", fields[2])
				continue
			}
			dst, err := strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				fmt.Printf("Bad destination node %q\n", fields[3])
				continue
			}
			e := datalog.Edge{Src: src, Dst: dst}
			op := storage.OpInsert
			if fields[0] == "remove" {
				op = storage.OpRemove
				rel.Remove(e)
			} else {
				rel.Insert(e)
			}
			pending = append(pending, storage.Entry{Op: op, Label: rel.Name(), Src: src, Dst: dst})
			fmt.Printf("Staged %s %s %s\n", fields[0], rel.Name(), e)

		case "sync":
			// Journal first: a replayed entry the engine never committed is
			// recoverable, a committed mutation the journal lost is not.
			if journal != nil {
				if err := journal.Append(pending); err != nil {
					fmt.Printf("Journal append failed: %v\n", err)
					continue
				}
			}
			start := time.Now()
			if err := eng.Sync(ctx); err != nil {
				fmt.Printf("Sync failed: %v\n", err)
				continue
			}
			pending = pending[:0]
			fmt.Printf("Synced; frontier now %d (%.1fms)\n",
				eng.Frontier(), float64(time.Since(start).Microseconds())/1000.0)

		case "read":
			if len(fields) != 2 {
				fmt.Println("Expected: read <relation>")
				continue
			}
			rel, err := eng.Relation(fields[1])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println(tf.FormatEdges(rel.Name(), rel.Read()))

		case "degrees":
			if len(fields) != 2 && len(fields) != 3 {
				fmt.Println("Expected: degrees <relation> [out|in]")
				continue
			}
			rel, err := eng.Relation(fields[1])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			dir := datalog.Forward
			if len(fields) == 3 {
				switch fields[2] {
				case "out":
					dir = datalog.Forward
				case "in":
					dir = datalog.Reverse
				default:
					fmt.Println("Direction must be out or in")
					continue
				}
			}
			degs, err := rel.Degrees(dir)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println(tf.FormatDegrees(rel.Name(), dir, degs))

		default:
			fmt.Println("Unknown command. Use help for the command list.")
		}
	}
}
