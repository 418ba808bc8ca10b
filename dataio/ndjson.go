//
// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package dataio reads and writes the files around the Blender pipeline:
// newline-delimited JSON datasets, raw query logs, the CBOR-encoded head list
// distribution and the final ranked table.
package dataio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/differential-privacy/blender/client"
	"github.com/google/differential-privacy/blender/querydb"
)

const maxLineSize = 1 << 20

// ClientID identifies the user behind a raw log record. It decodes from a
// JSON string or number.
type ClientID string

// UnmarshalJSON accepts both "clientId": "17" and "clientId": 17.
func (id *ClientID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ClientID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("clientId %s is neither a string nor a number", b)
	}
	*id = ClientID(n.String())
	return nil
}

// RawRecord is one line of a raw query log.
type RawRecord struct {
	ClientID ClientID `json:"clientId"`
	Query    string   `json:"query"`
	URL      string   `json:"url"`
}

// scanLines calls fn with every non-blank line of r and its 1-based number.
func scanLines(r io.Reader, fn func(line []byte, n int) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line, n); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func decodePair(line []byte) (client.Record, error) {
	var pair []string
	if err := json.Unmarshal(line, &pair); err != nil {
		return client.Record{}, err
	}
	if len(pair) != 2 {
		return client.Record{}, fmt.Errorf("got %d values, want [query, url]", len(pair))
	}
	return client.Record{Query: pair[0], URL: pair[1]}, nil
}

func decodeRaw(line []byte) (RawRecord, error) {
	var rec RawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return RawRecord{}, err
	}
	if rec.ClientID == "" {
		return RawRecord{}, fmt.Errorf("missing clientId")
	}
	return rec, nil
}

// ReadPairs reads a dataset of [query, url] lines.
func ReadPairs(r io.Reader) ([]client.Record, error) {
	var records []client.Record
	err := scanLines(r, func(line []byte, n int) error {
		rec, err := decodePair(line)
		if err != nil {
			return fmt.Errorf("line %d: %v", n, err)
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// LoadPairs reads the [query, url] dataset in inputFile into a database of
// the given kind.
func LoadPairs(kind querydb.Kind, inputFile string) (*querydb.Database, error) {
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the dataset file = %q, err = %v", inputFile, err)
	}
	defer f.Close()
	records, err := ReadPairs(f)
	if err != nil {
		return nil, fmt.Errorf("couldn't read the dataset file = %q, err = %v", inputFile, err)
	}
	return querydb.FromRecords(kind, client.Records(records)), nil
}

// ReadRawLog reads a raw query log, one {clientId, query, url} object per line.
func ReadRawLog(r io.Reader) ([]RawRecord, error) {
	var records []RawRecord
	err := scanLines(r, func(line []byte, n int) error {
		rec, err := decodeRaw(line)
		if err != nil {
			return fmt.Errorf("line %d: %v", n, err)
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// ReadClients reads the records of the client population. A [query, url]
// line is a client of its own; {clientId, query, url} lines are grouped by
// client. Clients are returned in order of first appearance.
func ReadClients(r io.Reader) ([][]client.Record, error) {
	var clients [][]client.Record
	byID := make(map[ClientID]int)
	err := scanLines(r, func(line []byte, n int) error {
		if line[0] == '[' {
			rec, err := decodePair(line)
			if err != nil {
				return fmt.Errorf("line %d: %v", n, err)
			}
			clients = append(clients, []client.Record{rec})
			return nil
		}
		raw, err := decodeRaw(line)
		if err != nil {
			return fmt.Errorf("line %d: %v", n, err)
		}
		rec := client.Record{Query: raw.Query, URL: raw.URL}
		i, ok := byID[raw.ClientID]
		if !ok {
			i = len(clients)
			byID[raw.ClientID] = i
			clients = append(clients, nil)
		}
		clients[i] = append(clients[i], rec)
		return nil
	})
	return clients, err
}

// LoadClients reads the client file at inputFile.
func LoadClients(inputFile string) ([][]client.Record, error) {
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the client file = %q, err = %v", inputFile, err)
	}
	defer f.Close()
	clients, err := ReadClients(f)
	if err != nil {
		return nil, fmt.Errorf("couldn't read the client file = %q, err = %v", inputFile, err)
	}
	return clients, nil
}

// WritePairs writes records as [query, url] lines.
func WritePairs(w io.Writer, records []client.Record) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		b, err := json.Marshal([2]string{rec.Query, rec.URL})
		if err != nil {
			return err
		}
		bw.Write(b)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteExpanded writes every record of db as a [query, url] line, repeated as
// many times as its count.
func WriteExpanded(w io.Writer, db *querydb.Database) error {
	bw := bufio.NewWriter(w)
	for q, u := range db.Expand() {
		b, err := json.Marshal([2]string{q, u})
		if err != nil {
			return err
		}
		bw.Write(b)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SaveExpanded writes db to outputFile with WriteExpanded.
func SaveExpanded(db *querydb.Database, outputFile string) error {
	return writeFile(outputFile, func(w io.Writer) error { return WriteExpanded(w, db) })
}

// WriteRaw writes records as {clientId, query, url} lines.
func WriteRaw(w io.Writer, records []RawRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		bw.Write(b)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// writeFile creates outputFile and fills it with write.
func writeFile(outputFile string, write func(w io.Writer) error) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("couldn't create the file = %q, err = %v", outputFile, err)
	}
	if err := write(f); err != nil {
		return fmt.Errorf("couldn't write to the file = %q, err = %v", outputFile, combineErrors(err, f.Close()))
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("couldn't close the file = %q, err = %v", outputFile, err)
	}
	return nil
}

func combineErrors(errors ...error) string {
	var nonNilErrors []error
	for _, err := range errors {
		if err != nil {
			nonNilErrors = append(nonNilErrors, err)
		}
	}
	return fmt.Sprintf("%+v", nonNilErrors)
}
