package tableio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/surveysim/runtime/pkg/detection"
)

func TestReadDelimitedComma(t *testing.T) {
	in := "ObjID,FieldID,optFilter,observedPSFMag\n" +
		"2011 AA,894816,r,21.5\n" +
		"# comment line\n" +
		"42,894817,g,\n"

	table, err := ReadDelimited(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatalf("ReadDelimited failed: %v", err)
	}
	if got := strings.Join(table.Columns, ","); got != "ObjID,FieldID,optFilter,observedPSFMag" {
		t.Errorf("columns = %s", got)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}

	first := table.Rows[0]
	if first["ObjID"] != "2011 AA" || first["optFilter"] != "r" {
		t.Errorf("string columns not preserved: %v", first)
	}
	if first["FieldID"] != float64(894816) || first["observedPSFMag"] != 21.5 {
		t.Errorf("numeric columns not parsed: %v", first)
	}

	second := table.Rows[1]
	if second["ObjID"] != "42" {
		t.Errorf("numeric-looking ObjID should stay a string, got %#v", second["ObjID"])
	}
	if second["observedPSFMag"] != nil {
		t.Errorf("empty field should be nil, got %#v", second["observedPSFMag"])
	}
}

func TestReadDelimitedWhitespace(t *testing.T) {
	in := "ObjID   g-r    i-r\n\n  t1   0.5   -0.2\nt2\t0.6\t-0.1\n"

	table, err := ReadDelimited(strings.NewReader(in), Options{Delimiter: "whitespace"})
	if err != nil {
		t.Fatalf("ReadDelimited failed: %v", err)
	}
	if table.Len() != 2 || table.Rows[1]["i-r"] != -0.1 {
		t.Errorf("unexpected table: %+v", table)
	}
}

func TestReadDelimitedErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		opts    Options
		wantErr error
	}{
		{"empty", "", Options{}, ErrEmptyInput},
		{"bad delimiter", "a,b\n", Options{Delimiter: "::"}, ErrInvalidDelimiter},
		{"duplicate column", "a,a\n1,2\n", Options{}, ErrDuplicateColumn},
		{"width mismatch", "a,b\n1,2,3\n", Options{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDelimited(strings.NewReader(tt.in), tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReadDelimitedWidthMismatchNamesLine(t *testing.T) {
	_, err := ReadDelimited(strings.NewReader("a b\n1 2\n3\n"), Options{Delimiter: "whitespace"})
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected error naming line 3, got %v", err)
	}
}

func TestWriteThenRead(t *testing.T) {
	table := detection.NewTable("ObjID", "observedPSFMag", "SNR")
	table.Append(detection.Record{"ObjID": "a", "observedPSFMag": 21.123456789, "SNR": 5.0})
	table.Append(detection.Record{"ObjID": "b", "observedPSFMag": nil, "SNR": 12.5})

	var buf bytes.Buffer
	if err := WriteDelimited(&buf, table, ""); err != nil {
		t.Fatalf("WriteDelimited failed: %v", err)
	}
	want := "ObjID,observedPSFMag,SNR\na,21.123456789,5\nb,,12.5\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	back, err := ReadDelimited(&buf, Options{})
	if err != nil {
		t.Fatalf("ReadDelimited failed: %v", err)
	}
	if back.Rows[0]["observedPSFMag"] != 21.123456789 {
		t.Errorf("value did not survive: %v", back.Rows[0])
	}
}

func TestWriteThenReadWhitespace(t *testing.T) {
	table := detection.NewTable("ObjID", "observedPSFMag", "SNR")
	table.Append(detection.Record{"ObjID": "a", "observedPSFMag": 21.0, "SNR": nil})
	table.Append(detection.Record{"ObjID": "b", "observedPSFMag": 22.5, "SNR": 7.0})

	var buf bytes.Buffer
	if err := WriteDelimited(&buf, table, DelimiterWhitespace); err != nil {
		t.Fatalf("WriteDelimited failed: %v", err)
	}
	want := "ObjID observedPSFMag SNR\na 21 NaN\nb 22.5 7\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	back, err := ReadDelimited(&buf, Options{Delimiter: DelimiterWhitespace})
	if err != nil {
		t.Fatalf("ReadDelimited failed: %v", err)
	}
	if back.Len() != 2 {
		t.Fatalf("rows = %d, want 2", back.Len())
	}
	if v, ok := back.Rows[0]["SNR"]; !ok || v != nil {
		t.Errorf("missing SNR = %#v, want nil", v)
	}
	if back.Rows[0]["observedPSFMag"] != 21.0 || back.Rows[1]["SNR"] != 7.0 {
		t.Errorf("values did not survive: %v", back.Rows)
	}
}

func TestWriteWhitespaceRejectsEmbeddedSpaces(t *testing.T) {
	table := detection.NewTable("ObjID", "observedPSFMag")
	table.Append(detection.Record{"ObjID": "2011 AA", "observedPSFMag": 21.0})

	var buf bytes.Buffer
	err := WriteDelimited(&buf, table, DelimiterWhitespace)
	if !errors.Is(err, ErrUnwritableField) {
		t.Fatalf("error = %v, want ErrUnwritableField", err)
	}
	if !strings.Contains(err.Error(), "2011 AA") {
		t.Errorf("error %q should name the value", err)
	}

	header := detection.NewTable("ObjID", "g r")
	if err := WriteDelimited(&buf, header, DelimiterWhitespace); !errors.Is(err, ErrUnwritableField) {
		t.Errorf("header error = %v, want ErrUnwritableField", err)
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in         string
		want       rune
		whitespace bool
	}{
		{"", ',', false},
		{";", ';', false},
		{`\t`, '\t', false},
		{"\t", '\t', false},
		{"Whitespace", 0, true},
	}
	for _, tt := range tests {
		got, ws, err := ParseDelimiter(tt.in)
		if err != nil || got != tt.want || ws != tt.whitespace {
			t.Errorf("ParseDelimiter(%q) = %q, %v, %v", tt.in, got, ws, err)
		}
	}
}
