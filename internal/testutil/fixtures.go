package testutil

import (
	"fmt"

	"github.com/roach88/incr/internal/fingerprint"
)

// Fingerprint builds a fingerprint from alternating path and signature
// arguments: Fingerprint("/f1", "h1", "/f2", "h2").
//
// Panics on an odd number of arguments or duplicate paths.
func Fingerprint(pathsAndSignatures ...string) fingerprint.Fingerprint {
	if len(pathsAndSignatures)%2 != 0 {
		panic(fmt.Sprintf("testutil.Fingerprint: odd number of arguments (%d)", len(pathsAndSignatures)))
	}
	files := make(map[string]fingerprint.Signature, len(pathsAndSignatures)/2)
	for i := 0; i < len(pathsAndSignatures); i += 2 {
		files[pathsAndSignatures[i]] = fingerprint.Signature(pathsAndSignatures[i+1])
	}
	return fingerprint.MustNew(files)
}

// Snapshot builds a snapshot from alternating property names and fingerprints.
func Snapshot(namesAndFingerprints ...any) fingerprint.Snapshot {
	if len(namesAndFingerprints)%2 != 0 {
		panic("testutil.Snapshot: odd number of arguments")
	}
	props := make(map[string]fingerprint.Fingerprint, len(namesAndFingerprints)/2)
	for i := 0; i < len(namesAndFingerprints); i += 2 {
		props[namesAndFingerprints[i].(string)] = namesAndFingerprints[i+1].(fingerprint.Fingerprint)
	}
	return fingerprint.NewSnapshot(props)
}
