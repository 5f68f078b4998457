// Package archive assembles dataset export ZIPs: audio clips under a dated
// root folder plus metadata tables and a README.
package archive
