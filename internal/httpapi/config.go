package httpapi

// maxBodyBytes caps map uploads at 10 MB.
var maxBodyBytes int64 = 10_000_000

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 10_000_000
		return
	}
	maxBodyBytes = n
}

// keepAliveInterval paces SSE keep-alive comments so reverse proxies do not
// time the stream out.
var keepAliveInterval = 15 // seconds

// SetKeepAliveSeconds configures the SSE keep-alive cadence.
func SetKeepAliveSeconds(sec int) {
	if sec <= 0 {
		sec = 15
	}
	keepAliveInterval = sec
}
