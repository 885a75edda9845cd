// Package utils provides small, dependency-free helper functions shared
// across the application.
package utils

import "strconv"

// PageParam parses a pagination query parameter.
//
// An empty string yields the supplied default (the parameter was simply
// omitted). Anything else must be a valid base-10 integer; malformed input
// returns the strconv error so callers can reject the request instead of
// silently substituting a value.
//
// Example:
//
//	n, err := utils.PageParam("", 10)   // 10, nil
//	n, err = utils.PageParam("42", 10)  // 42, nil
//	n, err = utils.PageParam("x", 10)   // 0, err
func PageParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
