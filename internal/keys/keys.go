// Package keys builds the storage keys and validates the namespace
// charset defined by the pool contract's key grammar.
package keys

import "regexp"

var namespaceCharset = regexp.MustCompile(`^[-+_.A-Za-z0-9]*$`)

// ValidNamespace reports whether ns matches the reserved charset
// [-+_.A-Za-z0-9]*.
func ValidNamespace(ns string) bool {
	return namespaceCharset.MatchString(ns)
}

// ItemID builds the full item key: namespace ":" item_prefix user_key.
func ItemID(namespace, itemPrefix, userKey string) string {
	return namespace + ":" + itemPrefix + userKey
}

// TagID builds the full tag key: namespace ":" tag_prefix tag_name.
func TagID(namespace, tagPrefix, tagName string) string {
	return namespace + ":" + tagPrefix + tagName
}
