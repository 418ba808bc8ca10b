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

package dataio

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/checks"
	"github.com/google/differential-privacy/blender/client"
)

// PartitionOptions configures PartitionLog. Zero-valued fields take their
// defaults.
type PartitionOptions struct {
	// OptinFraction is the share of users that opt in. Defaults to 0.05.
	OptinFraction float64
	// OptinSFraction is the share of opt-in users assigned to dataset S, the
	// rest going to T. Defaults to 0.95.
	OptinSFraction float64
	// MaxOptinRecords (m_o) caps the records kept per opt-in user. Defaults to 1.
	MaxOptinRecords int
	// MaxClientRecords (m_c) caps the records kept per client user. Defaults to 1.
	MaxClientRecords int
	// Salt is mixed into the user hash so different runs can draw different
	// partitions of the same log.
	Salt string
}

// Partition is a raw log split into three disjoint user populations.
type Partition struct {
	OptinS []client.Record
	OptinT []client.Record
	// Client records keep their client id so the client file can group them.
	Clients []RawRecord

	OptinSUsers, OptinTUsers, ClientUsers int
}

// PartitionLog assigns every user of records to opt-in dataset S, opt-in
// dataset T or the client population by hashing the user's id, and keeps at
// most m_o (opt-in) or m_c (client) records per user, in log order. The same
// id and salt always land in the same population.
func PartitionLog(records []RawRecord, opts *PartitionOptions) (*Partition, error) {
	o := PartitionOptions{}
	if opts != nil {
		o = *opts
	}
	if o.OptinFraction == 0 {
		o.OptinFraction = 0.05
	}
	if o.OptinSFraction == 0 {
		o.OptinSFraction = 0.95
	}
	if o.MaxOptinRecords == 0 {
		o.MaxOptinRecords = 1
	}
	if o.MaxClientRecords == 0 {
		o.MaxClientRecords = 1
	}
	const label = "dataio.PartitionLog"
	if err := checks.CheckFraction(label, "OptinFraction", o.OptinFraction); err != nil {
		return nil, err
	}
	if err := checks.CheckFraction(label, "OptinSFraction", o.OptinSFraction); err != nil {
		return nil, err
	}
	if err := checks.CheckMaxRecords(label, "m_o", float64(o.MaxOptinRecords)); err != nil {
		return nil, err
	}
	if err := checks.CheckMaxRecords(label, "m_c", float64(o.MaxClientRecords)); err != nil {
		return nil, err
	}

	var order []ClientID
	byUser := make(map[ClientID][]RawRecord)
	for _, rec := range records {
		if _, ok := byUser[rec.ClientID]; !ok {
			order = append(order, rec.ClientID)
		}
		byUser[rec.ClientID] = append(byUser[rec.ClientID], rec)
	}

	p := &Partition{}
	for _, id := range order {
		recs := byUser[id]
		u := unitHash(o.Salt, id)
		switch {
		case u < o.OptinFraction*o.OptinSFraction:
			p.OptinSUsers++
			p.OptinS = appendPairs(p.OptinS, recs[:min(len(recs), o.MaxOptinRecords)])
		case u < o.OptinFraction:
			p.OptinTUsers++
			p.OptinT = appendPairs(p.OptinT, recs[:min(len(recs), o.MaxOptinRecords)])
		default:
			p.ClientUsers++
			p.Clients = append(p.Clients, recs[:min(len(recs), o.MaxClientRecords)]...)
		}
	}
	log.Infof("PartitionLog: %d users into S (%d records), %d into T (%d records), %d clients (%d records)",
		p.OptinSUsers, len(p.OptinS), p.OptinTUsers, len(p.OptinT), p.ClientUsers, len(p.Clients))
	return p, nil
}

// unitHash maps a salted client id to [0, 1).
func unitHash(salt string, id ClientID) float64 {
	h := xxhash.Sum64String(salt + "\x00" + string(id))
	return float64(h>>11) / (1 << 53)
}

func appendPairs(dst []client.Record, recs []RawRecord) []client.Record {
	for _, r := range recs {
		dst = append(dst, client.Record{Query: r.Query, URL: r.URL})
	}
	return dst
}

// WritePartition writes the three populations of p: S and T as [query, url]
// lines, the clients as {clientId, query, url} lines.
func WritePartition(p *Partition, optinSFile, optinTFile, clientFile string) error {
	if err := writeFile(optinSFile, func(w io.Writer) error { return WritePairs(w, p.OptinS) }); err != nil {
		return err
	}
	if err := writeFile(optinTFile, func(w io.Writer) error { return WritePairs(w, p.OptinT) }); err != nil {
		return err
	}
	if err := writeFile(clientFile, func(w io.Writer) error { return WriteRaw(w, p.Clients) }); err != nil {
		return err
	}
	return nil
}

// ReadRawLogFile reads the raw query log at inputFile.
func ReadRawLogFile(inputFile string) ([]RawRecord, error) {
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the raw log file = %q, err = %v", inputFile, err)
	}
	defer f.Close()
	records, err := ReadRawLog(f)
	if err != nil {
		return nil, fmt.Errorf("couldn't read the raw log file = %q, err = %v", inputFile, err)
	}
	return records, nil
}
