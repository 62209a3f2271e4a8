// Package config loads the vstore configuration.
//
// Settings are layered, later layers winning:
//
//  1. defaults
//  2. vstore.json or vstore.toml (or the file passed with --config)
//  3. .env.local and .env in the working directory
//  4. VSTORE_* environment variables and changed command line flags
//
// # Configuration File Structure
//
//	[server]
//	address = ":8080"
//	revalidate_token = "change-me"
//	metrics = true
//
//	[storage]
//	backend = "file"        # memory, file, sqlite or s3
//	dir = ".vstore"
//	watch = true
//	timeout = "5s"
//
//	[mail]
//	host = "smtp.example.com"
//	port = 465
//	from = "noreply@example.com"
//	admin = "admin@example.com"
//
//	[log]
//	level = "info"
//	format = "text"
//
//	[demo]
//	latency = "500ms"
//
// Nested keys map to variables by upper-casing and joining with
// underscores: storage.s3.bucket is VSTORE_STORAGE_S3_BUCKET. The mail
// settings and the revalidation token also honor EMAIL_SERVER_HOST,
// EMAIL_SERVER_PORT, EMAIL_SERVER_USER, EMAIL_SERVER_PASSWORD, EMAIL_FROM,
// ADMIN_EMAIL and REVALIDATION_TOKEN.
//
// # Usage
//
//	cfg, err := config.Resolve(".", "", config.NewViper())
//	if err != nil {
//	    errors.Print(os.Stderr, err)
//	    os.Exit(1)
//	}
package config
