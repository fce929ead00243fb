/*
Command device-identity derives a DICE identity from a unique device secret and a
measurement, builds the root, signer and alias certificate chain, and exposes it.

Usage:

	device-identity [global options] command [command options]

Commands:

	show      print the registration id, common name and certificate chain
	export    write every artifact (keys with mode 0600) to --out-dir
	leaf-csr  generate a leaf key and print a CSR for --cn
	publish   store public artifacts and a manifest in --storage backends
	serve     serve the identity API on --listen-addr

Global options select the device inputs (--uds, --measurement, --fwid), the alias
common name (--alias-cn) and the trust anchor (--trust-anchor dev|file://|vault://).
Without them the development inputs and the development trust anchor are used.
*/
package main
