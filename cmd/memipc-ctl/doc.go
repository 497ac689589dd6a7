// Package main is a command-line producer for memipc queues.
//
// memipc-ctl encodes one ClientItem from its flags and writes it to a
// queue, optionally waiting for the server's ServerItem reply. It is also
// the explicit way to unlink a queue, since neither the server nor closing a
// handle ever removes one.
//
// Usage:
//
//	./memipc-ctl -name /tables -table users -action add -key 42 -payload alice
//	./memipc-ctl -name /tables -table users -action query -key 42 -wait-reply /tables.reply
//	./memipc-ctl -name /tables -unlink
package main
