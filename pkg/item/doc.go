// Package item defines the immutable form definition tree: an ordered forest
// of questions, groups, and display items with their attached expressions and
// constraints. The tree is created once per form load and read-only afterwards;
// editing state lives in the response package.
package item
