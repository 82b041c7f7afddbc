// pipesearch scans a transaction database for records matching a string
// or regular expression, in the terse progress/result line protocol
// viewer frontends expect (spec.md §6.4).
//
// Argument parsing is positional, not flag-based, per spec.md's fixed
// seven-argument search invocation; grounded on the pack's stdlib-flag
// CLI idiom (solidcoredata-dca, perkeep-perkeep) only insofar as neither
// reaches for a third-party CLI framework — there are no flags here to
// parse.
package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sparcians/pipedb"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pipesearch <db_prefix> <string|regex> <query> <invert:0|1> <start_tick|-1> <end_tick|-1> <csv_location_ids>")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 7 {
		usage()
		return 1
	}

	prefix := args[0]
	mode := args[1]
	query := args[2]

	invert, err := strconv.ParseBool(args[3])
	if err != nil {
		usage()
		return 1
	}

	startArg, err := strconv.ParseInt(args[4], 10, 64)
	if err != nil {
		usage()
		return 1
	}
	endArg, err := strconv.ParseInt(args[5], 10, 64)
	if err != nil {
		usage()
		return 1
	}

	var locFilter map[uint16]bool
	if csv := strings.TrimSpace(args[6]); csv != "" {
		locFilter = make(map[uint16]bool)
		for _, tok := range strings.Split(csv, ",") {
			v, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 16)
			if err != nil {
				usage()
				return 1
			}
			locFilter[uint16(v)] = true
		}
	}

	var match func(string) bool
	switch mode {
	case "string":
		match = func(s string) bool { return strings.Contains(s, query) }
	case "regex":
		re, err := regexp.Compile(query)
		if err != nil {
			fmt.Fprintln(os.Stderr, "pipesearch:", err)
			return 1
		}
		match = re.MatchString
	default:
		usage()
		return 1
	}

	r, err := pipedb.Open(prefix, pipedb.Config{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipesearch:", err)
		return 1
	}
	defer r.Close()

	lo := r.FirstTick()
	if startArg >= 0 {
		lo = uint64(startArg)
	}
	hi := r.LastTick()
	if endArg >= 0 {
		hi = uint64(endArg)
	}

	fmt.Printf("i scanning ticks [%d,%d] heartbeat=%d version=%d\n", lo, hi, r.Heartbeat(), r.Version())

	span := hi - lo + 1
	lastReported := -1
	hits := 0

	err = r.Stream(lo, hi, func(rec pipedb.Record) error {
		base := rec.Base()
		if locFilter != nil && !locFilter[base.LocationID] {
			return nil
		}

		if span > 0 {
			pct := int(float64(base.StartTick-lo) / float64(span) * 100)
			if pct != lastReported {
				lastReported = pct
				fmt.Printf("p %.2f\n", float64(pct)/100)
			}
		}

		text := renderText(rec)
		if match(text) == invert {
			return nil
		}

		hits++
		escaped := strings.ReplaceAll(text, "\n", "\\n")
		fmt.Printf("r%d,%d@%d:%s\n", base.StartTick, base.EndTick, base.LocationID, escaped)
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipesearch:", err)
		return 1
	}

	fmt.Println("p 1.00")
	fmt.Printf("i Number of hits: %d\n", hits)
	return 0
}

// renderText builds the textual form of a record that search matches
// against and prints on a result line.
func renderText(rec pipedb.Record) string {
	switch rec.Tag {
	case pipedb.TagAnnotation:
		return rec.Annotation.Text
	case pipedb.TagInstruction:
		return fmt.Sprintf("opcode=0x%x va=0x%x pa=0x%x", rec.Instruction.Opcode, rec.Instruction.VirtualAddress, rec.Instruction.PhysicalAddress)
	case pipedb.TagMemoryOp:
		return fmt.Sprintf("va=0x%x pa=0x%x", rec.MemoryOp.VirtualAddress, rec.MemoryOp.PhysicalAddress)
	case pipedb.TagPair:
		p := rec.Pair
		var b strings.Builder
		for i := range p.FieldNames {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(p.FieldNames[i])
			b.WriteByte('=')
			b.WriteString(p.FieldStrs[i])
		}
		return b.String()
	default:
		return ""
	}
}
