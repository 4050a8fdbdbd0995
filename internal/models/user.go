package models

import "time"

// SystemRole controls access to the management surfaces of the API
type SystemRole string

const (
	RoleAdmin      SystemRole = "admin"
	RoleSupervisor SystemRole = "supervisor"
	RoleEmployee   SystemRole = "employee"
)

// EmployeeRole is the workflow capability a step can require
type EmployeeRole string

const (
	RoleVerifikator    EmployeeRole = "VER"    // Verifikator
	RoleRincianBiaya   EmployeeRole = "PPRBPD" // Petugas Pembuat Rincian Biaya PD
	RoleOpKomitmen     EmployeeRole = "OK"     // Operator Komitmen
	RoleOpSPM          EmployeeRole = "OSPM"   // Operator SPM
	RoleOpPembayaran   EmployeeRole = "OP"     // Operator Pembayaran
	RoleOpSPBy         EmployeeRole = "OSPBy"  // Operator SPBy
	RoleBendahara      EmployeeRole = "BP"     // Bendahara Pengeluaran
	RolePPK            EmployeeRole = "PPK"    // Pejabat Pembuat Komitmen
	RolePelaksana      EmployeeRole = "PPD"    // Pelaksana Perjalanan Dinas (signing executor)
	RoleAdminDigit     EmployeeRole = "ADK"    // Admin Digit Kemenkeu
	RoleKasubagUmum    EmployeeRole = "KSBU"   // Kepala Sub Bagian Umum
	RoleArsip          EmployeeRole = "PABPD"  // Petugas Arsip Berkas PD
)

// User is an account in the local user store
type User struct {
	ID           int64        `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"`
	Name         string       `json:"name"`
	SystemRole   SystemRole   `json:"system_role"`
	EmployeeRole EmployeeRole `json:"employee_role,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Actor is the already-authenticated identity supplied to every workflow call
type Actor struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	SystemRole   SystemRole   `json:"system_role"`
	EmployeeRole EmployeeRole `json:"employee_role,omitempty"`
}
