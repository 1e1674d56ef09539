package dedup_test

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/flowdb/rowdedup"
)

// Example demonstrates collecting row identifiers for a multi-table
// DELETE: duplicate keys collapse, and the surviving keys come back in
// sorted order, ready for a disk-order delete pass.
func Example() {
	d, err := dedup.New(bytes.Compare, 4, 1<<20)
	if err != nil {
		panic(err)
	}
	defer d.Close()

	be32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}

	for _, rowID := range []uint32{40, 10, 30, 10, 20, 40} {
		if err := d.Put(be32(rowID)); err != nil {
			panic(err)
		}
	}

	keys, err := d.Extract()
	if err != nil {
		panic(err)
	}
	for k := range keys {
		fmt.Println(binary.BigEndian.Uint32(k))
	}

	// Output:
	// 10
	// 20
	// 30
	// 40
}
