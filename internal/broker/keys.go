package broker

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// FindKeyFile returns the lexically first *.pem file in dir.
func FindKeyFile(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &KeyNotFoundError{Dir: dir, Reason: "directory does not exist"}
		}
		return "", &KeyNotFoundError{Dir: dir, Reason: err.Error()}
	}
	if !info.IsDir() {
		return "", &KeyNotFoundError{Dir: dir, Reason: "not a directory"}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &KeyNotFoundError{Dir: dir, Reason: err.Error()}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pem") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", &KeyNotFoundError{Dir: dir, Reason: "no *.pem files"}
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// LoadSigningKey reads the RS256 private key from the first *.pem file in dir.
// PKCS#1 and PKCS#8 encodings are accepted.
func LoadSigningKey(dir string) (jwk.Key, error) {
	path, err := FindKeyFile(dir)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &KeyNotFoundError{Dir: dir, Reason: err.Error()}
	}
	key, err := jwk.ParseKey(b, jwk.WithPEM(true))
	if err != nil {
		return nil, &KeyNotFoundError{Dir: dir, Reason: "parse " + filepath.Base(path) + ": " + err.Error()}
	}
	if _, ok := key.(jwk.RSAPrivateKey); !ok {
		return nil, &KeyNotFoundError{Dir: dir, Reason: filepath.Base(path) + " is not an RSA private key"}
	}
	return key, nil
}
