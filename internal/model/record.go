package model

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Header is the first row of every results file.
var Header = []string{"bytecode_hash", "result", "time (sec)", "source_type"}

// ResultRecord is the durable result of one task.
type ResultRecord struct {
	BytecodeHash string
	Exit         ExitKind
	Elapsed      time.Duration
	Source       BundleKind
}

// Row renders the record as results file columns. Line breaks inside fields are
// collapsed to a space so that a record always occupies a single line.
func (r ResultRecord) Row() []string {
	return []string{
		oneLine(r.BytecodeHash),
		oneLine(r.Exit.String()),
		strconv.FormatFloat(r.Elapsed.Seconds(), 'f', 3, 64),
		oneLine(string(r.Source)),
	}
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string {
	return lineBreaks.Replace(s)
}

// RecordWriter persists result records. The collector is the only caller.
type RecordWriter interface {
	Write(ctx context.Context, r ResultRecord) error
}

// RecordWriteCloser is a RecordWriter holding resources.
type RecordWriteCloser interface {
	RecordWriter
	Close() error
}
