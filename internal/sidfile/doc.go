// Package sidfile parses PSID/RSID container headers.
//
// Only the header block is decoded: the analyzing phase needs song counts,
// the start song, and the Latin-1 credit strings (title/author/released);
// actual 6502/SID emulation is the render engine's job.
package sidfile
