// Package dedupe provides a TTL cache for suppressing repeats within a
// window, sized with an upper bound so hostile input cannot grow it.
package dedupe
