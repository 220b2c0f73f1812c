package model

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const (
	artifactMagic   = "BINFILL\x00"
	artifactVersion = 2
)

// Save writes the parameters of n to path. The file is written to a
// temporary sibling and renamed over path, replacing any previous version.
func Save(path string, n *Network) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = encode(w, n); err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Reason: "read failed", Err: err}
	}
	n, err := decode(data)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Reason: "invalid artifact", Err: err}
	}
	return n, nil
}

// Layout: magic, uint16 version, uint16 fingerprint length, fingerprint,
// uint32 layer count, then per layer the weight matrix and the bias vector
// in gonum's binary matrix format. A CRC32 (IEEE) of everything before it
// closes the file. Integers are little endian.
func encode(w io.Writer, n *Network) error {
	sum := crc32.NewIEEE()
	mw := io.MultiWriter(w, sum)

	layers := n.layers()
	if err := writeHeader(mw, len(layers)); err != nil {
		return err
	}
	for i, l := range layers {
		if _, err := l.w.MarshalBinaryTo(mw); err != nil {
			return fmt.Errorf("layer %d weights: %w", i, err)
		}
		if _, err := mat.NewVecDense(len(l.b), l.b).MarshalBinaryTo(mw); err != nil {
			return fmt.Errorf("layer %d bias: %w", i, err)
		}
	}
	return binary.Write(w, binary.LittleEndian, sum.Sum32())
}

func writeHeader(w io.Writer, layers int) error {
	fp := Fingerprint()
	if _, err := io.WriteString(w, artifactMagic); err != nil {
		return err
	}
	for _, v := range []any{uint16(artifactVersion), uint16(len(fp))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, fp); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint32(layers))
}

var errTruncated = errors.New("truncated artifact")

func decode(data []byte) (*Network, error) {
	if len(data) < len(artifactMagic)+4+4 {
		return nil, errTruncated
	}
	if string(data[:len(artifactMagic)]) != artifactMagic {
		return nil, errors.New("not a bin fill artifact")
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if got, want := crc32.ChecksumIEEE(body), binary.LittleEndian.Uint32(trailer); got != want {
		return nil, fmt.Errorf("checksum mismatch: computed %08x, stored %08x", got, want)
	}

	r := bytes.NewReader(body[len(artifactMagic):])
	var version, fpLen uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, errTruncated
	}
	if version != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &fpLen); err != nil {
		return nil, errTruncated
	}
	fp := make([]byte, fpLen)
	if _, err := io.ReadFull(r, fp); err != nil {
		return nil, errTruncated
	}
	if string(fp) != Fingerprint() {
		return nil, fmt.Errorf("architecture mismatch: artifact %q, expected %q", fp, Fingerprint())
	}

	n := newNetwork()
	layers := n.layers()
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errTruncated
	}
	if int(count) != len(layers) {
		return nil, fmt.Errorf("artifact has %d layers, expected %d", count, len(layers))
	}
	for i, l := range layers {
		var w mat.Dense
		if _, err := w.UnmarshalBinaryFrom(r); err != nil {
			return nil, fmt.Errorf("layer %d weights: %w", i, err)
		}
		wr, wc := w.Dims()
		if rows, cols := l.w.Dims(); wr != rows || wc != cols {
			return nil, fmt.Errorf("layer %d weights are %dx%d, expected %dx%d", i, wr, wc, rows, cols)
		}
		l.w.Copy(&w)

		var b mat.VecDense
		if _, err := b.UnmarshalBinaryFrom(r); err != nil {
			return nil, fmt.Errorf("layer %d bias: %w", i, err)
		}
		if b.Len() != len(l.b) {
			return nil, fmt.Errorf("layer %d bias has %d values, expected %d", i, b.Len(), len(l.b))
		}
		for j := range l.b {
			l.b[j] = b.AtVec(j)
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after parameters", r.Len())
	}
	return n, nil
}
