// Command comicreel converts comic book and image archives into
// slideshow videos with background music. The convert command handles
// one-off batches, watch keeps converting archives as they land in the
// library directories, and check, history, and config cover dependency
// probing, the conversion log, and configuration management.
package main
