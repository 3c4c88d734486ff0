package ports

// BrowserLauncher opens URLs in the user's browser
type BrowserLauncher interface {
	// Open opens url without waiting for the browser to exit
	Open(url string) error
}
