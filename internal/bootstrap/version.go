package bootstrap

// Version is set at build time with -ldflags "-X glossary-review/internal/bootstrap.Version=v1.2.3".
var Version = "dev"
