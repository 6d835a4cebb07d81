package checksum

import (
	"fmt"
	"strconv"
	"strings"
)

// EncryptMD5 applies the BaiduNetdisk MD5 scrambling transform to a plain
// 32-character hex MD5: rearrange the quarters, XOR each hex digit with
// (15 & index), then shift the 10th character into the g-w letter range.
// The provider reports scrambled sums, so comparing against it requires the
// same transform. Even then the result is not always the true content MD5,
// which is why the provider sits on the hash-trust denylist by default.
func EncryptMD5(md5str string) (string, error) {
	if len(md5str) != 32 {
		return "", fmt.Errorf("md5 must be 32 hex characters, got %d", len(md5str))
	}

	rearranged := md5str[8:16] + md5str[0:8] + md5str[24:32] + md5str[16:24]

	var b strings.Builder
	b.Grow(32)
	for i, ch := range rearranged {
		val, err := strconv.ParseUint(string(ch), 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid hex character %q at index %d", ch, i)
		}
		b.WriteString(strconv.FormatUint(val^uint64(15&i), 16))
	}
	encrypted := []byte(b.String())

	val9, err := strconv.ParseUint(string(encrypted[9]), 16, 8)
	if err != nil {
		return "", fmt.Errorf("invalid hex character %q at index 9", encrypted[9])
	}
	encrypted[9] = byte('g' + val9)

	return string(encrypted), nil
}
