// Package bruteforce provides a nearest-neighbour index that answers queries
// by scanning every record with the same admission test and weighted metric
// as the k-d tree. It serves as the correctness baseline and supports the
// shared binary format for persistence in the kd_storage table.
package bruteforce
