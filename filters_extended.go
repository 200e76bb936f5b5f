package dotliquid

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/yuin/goldmark"

	"github.com/lodgify/dotliquid/value"
)

// ShopifyFilters are the hashing filters of Shopify Liquid. They are not
// registered by default; templates enable them with
// {% param using='ShopifyFilters' %} and hosts with RegisterFilter.
type ShopifyFilters struct{}

// Md5 returns the hex MD5 digest of a string.
func (ShopifyFilters) Md5(input any) string {
	sum := md5.Sum([]byte(value.ToString(input)))
	return hex.EncodeToString(sum[:])
}

// Sha1 returns the hex SHA-1 digest of a string.
func (ShopifyFilters) Sha1(input any) string {
	sum := sha1.Sum([]byte(value.ToString(input)))
	return hex.EncodeToString(sum[:])
}

// Sha256 returns the hex SHA-256 digest of a string.
func (ShopifyFilters) Sha256(input any) string {
	sum := sha256.Sum256([]byte(value.ToString(input)))
	return hex.EncodeToString(sum[:])
}

// hmacSha1 and hmacSha256 are registered by name alongside
// ShopifyFilters: a Go method name cannot spell hmac_sha256.
func hmacSha1(input any, secret string) string {
	return hexHMAC(sha1.New, input, secret)
}

func hmacSha256(input any, secret string) string {
	return hexHMAC(sha256.New, input, secret)
}

func hexHMAC(h func() hash.Hash, input any, secret string) string {
	mac := hmac.New(h, []byte(secret))
	mac.Write([]byte(value.ToString(input)))
	return hex.EncodeToString(mac.Sum(nil))
}

// ExtendedFilters are text filters beyond the standard set, enabled with
// {% param using='ExtendedFilters' %} or RegisterFilter.
type ExtendedFilters struct{}

// UpcaseFirst upper-cases the first non-space character of a string.
func (ExtendedFilters) UpcaseFirst(c *Context, input any) any {
	if input == nil {
		return nil
	}
	return upcaseFirst(c.culture, value.ToString(input))
}

// Titleize upper-cases the first letter of every word.
func (ExtendedFilters) Titleize(c *Context, input any) any {
	if input == nil {
		return nil
	}
	return c.culture.Title(value.ToString(input))
}

// Markdownify converts CommonMark text to HTML.
func (ExtendedFilters) Markdownify(input any) (any, error) {
	if input == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(value.ToString(input)), &buf); err != nil {
		return nil, err
	}
	return buf.String(), nil
}
