// Package webview exposes the backend's base URL to the frontend.
//
// On every page load the host evaluates one statement in the page's global
// scope:
//
//	window.__CLOVIS_API_BASE__ = 'http://127.0.0.1:<port>';
//
// The frontend reads that global instead of negotiating with the backend.
// Injection is fire-and-forget: no acknowledgement, no retry.
//
// Window abstracts whatever can evaluate the statement. A native webview
// binding implements it directly; Host, the HTTP frontend host shipped
// here, implements it per served HTML document by inlining the statement
// as the first <script> in <head>.
package webview
