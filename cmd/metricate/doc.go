// Command metricate converts imperial unit phrases in HTML and text files to
// metric and serves a live document over a WebSocket control channel.
//
// Usage:
//
//	metricate convert page.html -o page.metric.html
//	metricate convert --smart --units miles,feet notes.txt
//	metricate revert page.metric.html
//	metricate report page.html
//	metricate diff page.html
//	metricate serve page.html
//	metricate send toggle --smart=true
//	metricate settings get
//	metricate config init
package main
