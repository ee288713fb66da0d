// Package builtin provides the functions a reference may call.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - now(), date(format): Current time as text
//   - timestamp(), timestampMs(): Current Unix time as an integer
//   - random(min, max): Random integer in range
//   - randomString(length), randomEmail(): Random text
//   - base64(value), base64Decode(value): Base64 encoding, decoding yields bytes
//   - md5(value), sha256(value): Hex digests
//   - urlEncode(value), urlDecode(value): Query escaping
//   - env(name): Environment variable, none when unset
//
// A declaration calls them through a reference, e.g. `id: !ref uuid()`.
package builtin
