package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Packed-JS unpacker for the Dean Edwards p.a.c.k.e.r format many XFS
// hosters wrap their player setup in:
//
//	eval(function(p,a,c,k,e,d){...}('payload',base,count,'words'.split('|'),...))
var packedPattern = regexp.MustCompile(
	`eval\(function\(p,a,c,k,e,[dr]\)\{.*?\}\('(.*?)',(\d+),(\d+),'(.*?)'\.split\('\|'\)`)

// IsPacked reports whether the script body contains a packed payload.
func IsPacked(script string) bool {
	return packedPattern.MatchString(script)
}

// Unpack decodes the first packed payload in the script. The symbol table
// substitutes base-N encoded words back into the payload.
func Unpack(script string) (string, error) {
	m := packedPattern.FindStringSubmatch(script)
	if m == nil {
		return "", fmt.Errorf("no packed payload found")
	}

	payload := m[1]
	base, err := strconv.Atoi(m[2])
	if err != nil || base < 2 || base > 62 {
		return "", fmt.Errorf("invalid radix %q", m[2])
	}
	count, err := strconv.Atoi(m[3])
	if err != nil {
		return "", fmt.Errorf("invalid word count %q", m[3])
	}
	words := strings.Split(m[4], "|")
	if len(words) < count {
		count = len(words)
	}

	// Replace each base-N token with its dictionary word, longest tokens
	// first so "10" is not rewritten as "1"+"0".
	for i := count - 1; i >= 0; i-- {
		if words[i] == "" {
			continue
		}
		token := encodeBase(i, base)
		payload = replaceToken(payload, token, words[i])
	}

	return payload, nil
}

const baseAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func encodeBase(n, base int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{baseAlphabet[n%base]}, b...)
		n /= base
	}
	return string(b)
}

// replaceToken substitutes whole-word occurrences of token only.
func replaceToken(payload, token, word string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
	return re.ReplaceAllString(payload, word)
}
