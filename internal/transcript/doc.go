// Package transcript records what crossed the link during a console session
// so the operator can save it afterward. The ledger is a fixed-size window;
// exports render to markdown or a self-contained HTML page.
package transcript
