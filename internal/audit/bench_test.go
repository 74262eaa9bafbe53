package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func BenchmarkAppend_Single(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.jsonl")
	al, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}
	defer al.Close()

	payload := testPayload{Path: "/etc/hosts", Kind: "modified"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		al.Append(TypeChange, payload)
	}
}

func benchVerify(b *testing.B, n int) {
	b.Helper()
	path := filepath.Join(b.TempDir(), "bench.jsonl")
	al, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}
	payload := testPayload{Path: "/etc/hosts", Kind: "modified"}
	for i := 0; i < n; i++ {
		al.Append(TypeChange, payload)
	}
	al.Close()

	info, _ := os.Stat(path)
	b.ResetTimer()
	b.SetBytes(info.Size())

	for i := 0; i < b.N; i++ {
		result := Verify(path)
		if !result.Valid {
			b.Fatal("invalid chain:", result.Error)
		}
	}
}

func BenchmarkVerify_1000(b *testing.B) {
	benchVerify(b, 1000)
}

func BenchmarkVerify_10000(b *testing.B) {
	benchVerify(b, 10000)
}
