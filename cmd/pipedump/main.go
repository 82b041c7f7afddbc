// pipedump renders the full contents of a transaction
// database to stdout, one record per line (spec.md §6.4).
//
// -m and -s are part of the specified surface; -json and -gz are
// supplementary export modes (SPEC_FULL.md §4) that exercise
// goccy/go-json and klauspost/compress/zstd the way the domain stack
// wires them in.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sparcians/pipedb"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pipedump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	merge := fs.Bool("m", false, "merge transactions split across heartbeats")
	sortByEnd := fs.Bool("s", false, "sort output by end_tick")
	asJSON := fs.Bool("json", false, "emit newline-delimited JSON instead of plain text")
	gz := fs.Bool("gz", false, "zstd-compress stdout")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: pipedump [-h] [-m] [-s] [-json] [-gz] <db_prefix>")
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	prefix := fs.Arg(0)

	r, err := pipedb.Open(prefix, pipedb.Config{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipedump:", err)
		return 1
	}
	defer r.Close()

	var out io.Writer = bufio.NewWriter(os.Stdout)
	if *gz {
		enc, err := zstd.NewWriter(os.Stdout, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			fmt.Fprintln(os.Stderr, "pipedump:", err)
			return 1
		}
		defer enc.Close()
		out = enc
	}

	records, err := collect(r, *merge)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipedump:", err)
		return 1
	}
	if *sortByEnd {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Base().EndTick < records[j].Base().EndTick
		})
	}

	for _, rec := range records {
		if err := writeRecord(out, rec, *asJSON); err != nil {
			fmt.Fprintln(os.Stderr, "pipedump:", err)
			return 1
		}
	}
	if bw, ok := out.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			fmt.Fprintln(os.Stderr, "pipedump:", err)
			return 1
		}
	}

	return 0
}

// collect streams the full visible range and, when merge is set, folds
// CONTINUE-chained records sharing a transaction_id into one entry whose
// end_tick is the chain's final end_tick.
func collect(r *pipedb.Reader, merge bool) ([]pipedb.Record, error) {
	var out []pipedb.Record
	pending := make(map[uint64]int) // transaction_id -> index in out, while still open

	err := r.Stream(r.FirstTick(), r.LastTick(), func(rec pipedb.Record) error {
		base := rec.Base()
		if !merge {
			out = append(out, rec)
			return nil
		}

		if idx, ok := pending[base.TransactionID]; ok {
			out[idx] = extendEndTick(out[idx], base.EndTick)
			if !base.Continue() {
				delete(pending, base.TransactionID)
			}
			return nil
		}

		out = append(out, rec)
		if base.Continue() {
			pending[base.TransactionID] = len(out) - 1
		}
		return nil
	})
	return out, err
}

// extendEndTick returns a copy of rec with its base end_tick raised to
// endTick, used by collect's merge path to fold a continuation segment's
// coverage into the head record already collected.
func extendEndTick(rec pipedb.Record, endTick uint64) pipedb.Record {
	switch rec.Tag {
	case pipedb.TagAnnotation:
		a := *rec.Annotation
		a.EndTick = endTick
		rec.Annotation = &a
	case pipedb.TagInstruction:
		i := *rec.Instruction
		i.EndTick = endTick
		rec.Instruction = &i
	case pipedb.TagMemoryOp:
		m := *rec.MemoryOp
		m.EndTick = endTick
		rec.MemoryOp = &m
	case pipedb.TagPair:
		p := *rec.Pair
		p.EndTick = endTick
		rec.Pair = &p
	}
	return rec
}

func writeRecord(w io.Writer, rec pipedb.Record, asJSON bool) error {
	if asJSON {
		b, err := rec.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}

	base := rec.Base()
	text := renderText(rec)
	_, err := fmt.Fprintf(w, "%d,%d@%d:%s\n", base.StartTick, base.EndTick, base.LocationID, strings.ReplaceAll(text, "\n", "\\n"))
	return err
}

func renderText(rec pipedb.Record) string {
	switch rec.Tag {
	case pipedb.TagAnnotation:
		return rec.Annotation.Text
	case pipedb.TagInstruction:
		return fmt.Sprintf("instruction opcode=0x%x va=0x%x pa=0x%x", rec.Instruction.Opcode, rec.Instruction.VirtualAddress, rec.Instruction.PhysicalAddress)
	case pipedb.TagMemoryOp:
		return fmt.Sprintf("memop va=0x%x pa=0x%x", rec.MemoryOp.VirtualAddress, rec.MemoryOp.PhysicalAddress)
	case pipedb.TagPair:
		p := rec.Pair
		var b strings.Builder
		b.WriteString("pair ")
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
