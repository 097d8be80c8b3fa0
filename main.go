package main

import (
	"encoding/json"
	"fmt"
	"os"

	"pagebuf/buffer"
	"pagebuf/disk"
)

type demoRecord struct {
	Num int
	Val string
}

func main() {
	f, err := disk.Open("demo.db")
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer f.Close()

	pool := buffer.NewManager(32)

	// push more pages than the pool holds so eviction kicks in
	pageNos := make([]disk.PageID, 0, 50)
	for i := 0; i < 50; i++ {
		h, err := pool.NewPage(f)
		if err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}
		payload, _ := json.Marshal(demoRecord{Num: i, Val: "hello"})
		copy(h.Data(), payload)
		pageNos = append(pageNos, h.PageID())
		if err := h.Release(true); err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}
	}

	if err := pool.FlushAll(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	h, err := pool.GetPage(f, pageNos[0])
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	var rec demoRecord
	if err := json.Unmarshal(h.Data()[:bytesUntilZero(h.Data())], &rec); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	fmt.Printf("page %d holds %+v\n", h.PageID(), rec)
	if err := h.Release(false); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	pool.DumpTo(os.Stdout)
}

func bytesUntilZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}
