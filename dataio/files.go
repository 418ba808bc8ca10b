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
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/differential-privacy/blender/blend"
	"github.com/google/differential-privacy/blender/headlist"
	"github.com/ugorji/go/codec"
)

// MarshalCBOR serializes v in CBOR format.
func MarshalCBOR(v any) ([]byte, error) {
	encBuf := new(bytes.Buffer)
	enc := codec.NewEncoder(encBuf, &codec.CborHandle{})
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return encBuf.Bytes(), nil
}

// UnmarshalCBOR parses CBOR-encoded b into v.
func UnmarshalCBOR(b []byte, v any) error {
	dec := codec.NewDecoder(bytes.NewBuffer(b), &codec.CborHandle{})
	return dec.Decode(v)
}

// WriteDistribution writes the CBOR encoding of d to outputFile.
func WriteDistribution(d *headlist.Distribution, outputFile string) error {
	b, err := MarshalCBOR(d)
	if err != nil {
		return fmt.Errorf("couldn't encode the head list distribution, err = %v", err)
	}
	return writeFile(outputFile, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// ReadDistribution reads a CBOR-encoded distribution from inputFile and
// checks that it can drive local randomization.
func ReadDistribution(inputFile string) (*headlist.Distribution, error) {
	b, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't read the distribution file = %q, err = %v", inputFile, err)
	}
	d := &headlist.Distribution{}
	if err := UnmarshalCBOR(b, d); err != nil {
		return nil, fmt.Errorf("couldn't decode the distribution file = %q, err = %v", inputFile, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid distribution file = %q, err = %v", inputFile, err)
	}
	return d, nil
}

// WriteResults writes the final ranked table of res to outputFile.
func WriteResults(res *blend.Result, outputFile string) error {
	return writeFile(outputFile, func(w io.Writer) error {
		_, err := res.WriteTo(w)
		return err
	})
}
