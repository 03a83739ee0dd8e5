/*
Package tuya is a client for the Tuya cloud API.

It implements the vendor's HMAC-SHA256 request signing, caches the short-lived
access token across concurrent callers, unwraps the uniform response envelope
and turns the polymorphic per-device data-point lists into strict typed status
structures for the supported device families.
*/
package tuya
