//go:build release

package cycles

const defaultResponse = Cancel
