package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/voxbridge/voxbridge/adapters/hasher"
	"github.com/voxbridge/voxbridge/adapters/idgen"
	"github.com/voxbridge/voxbridge/adapters/sqlite"
	"github.com/voxbridge/voxbridge/config"
	"github.com/voxbridge/voxbridge/ports"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
	Long: `Manage voxbridge user accounts.

Accounts drive the per-user quotas and the admin usage rollups.
Suspended accounts are denied until the suspension lapses; blocked
accounts are denied until unblocked.

Examples:
  voxbridge users list
  voxbridge users add --email=sam@example.com --name="Sam"
  voxbridge users suspend sam@example.com --until=72h
  voxbridge users block sam@example.com --reason="payment failed"
  voxbridge users unblock sam@example.com`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all user accounts",
	RunE:  runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new user account",
	RunE:  runUsersAdd,
}

var usersGetCmd = &cobra.Command{
	Use:   "get <user-id-or-email>",
	Short: "Show account details",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersGet,
}

var usersSuspendCmd = &cobra.Command{
	Use:   "suspend <user-id-or-email>",
	Short: "Suspend an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersSuspend,
}

var usersBlockCmd = &cobra.Command{
	Use:   "block <user-id-or-email>",
	Short: "Block an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersBlock,
}

var usersUnblockCmd = &cobra.Command{
	Use:   "unblock <user-id-or-email>",
	Short: "Reactivate a suspended or blocked account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersUnblock,
}

var usersSetPasswordCmd = &cobra.Command{
	Use:   "set-password <user-id-or-email>",
	Short: "Set or reset an account password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersSetPassword,
}

var (
	userEmail    string
	userName     string
	userPassword string
	userAdmin    bool
	suspendFor   time.Duration
	blockReason  string
)

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersGetCmd)
	usersCmd.AddCommand(usersSuspendCmd)
	usersCmd.AddCommand(usersBlockCmd)
	usersCmd.AddCommand(usersUnblockCmd)
	usersCmd.AddCommand(usersSetPasswordCmd)

	usersAddCmd.Flags().StringVar(&userEmail, "email", "", "account email (required)")
	usersAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	usersAddCmd.Flags().StringVar(&userPassword, "password", "", "account password (prompts if omitted)")
	usersAddCmd.Flags().BoolVar(&userAdmin, "admin", false, "grant admin role")
	usersAddCmd.MarkFlagRequired("email")

	usersSuspendCmd.Flags().DurationVar(&suspendFor, "until", 0, "suspension duration, e.g. 72h (0 = indefinite)")
	usersBlockCmd.Flags().StringVar(&blockReason, "reason", "", "reason shown to the blocked user")
	usersSetPasswordCmd.Flags().StringVar(&userPassword, "password", "", "new password (prompts if omitted)")
}

func runUsersList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	users, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		fmt.Println()
		fmt.Println("Add one with: voxbridge users add --email=sam@example.com")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tSTATUS\tADMIN")
	fmt.Fprintln(w, "--\t-----\t----\t------\t-----")

	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
			u.ID, u.Email, u.DisplayName, describeStatus(u), u.IsAdmin)
	}

	w.Flush()
	return nil
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)

	if _, err := store.GetByEmail(context.Background(), userEmail); err == nil {
		return fmt.Errorf("a user with email %s already exists", userEmail)
	}

	password := userPassword
	if password == "" {
		password, err = promptPassword("Password: ")
		if err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	hash, err := hasher.New(0).Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := ports.User{
		ID:           idgen.UUID{}.New(),
		Email:        userEmail,
		DisplayName:  userName,
		Status:       ports.StatusActive,
		IsAdmin:      userAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := store.Put(context.Background(), user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("%s Created user: %s\n", checkMark, user.ID)
	fmt.Printf("   Email: %s\n", user.Email)
	if user.DisplayName != "" {
		fmt.Printf("   Name:  %s\n", user.DisplayName)
	}
	if user.IsAdmin {
		fmt.Println("   Role:  admin")
	}
	return nil
}

func runUsersGet(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	user, err := getUserByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	fmt.Printf("ID:      %s\n", user.ID)
	fmt.Printf("Email:   %s\n", user.Email)
	if user.DisplayName != "" {
		fmt.Printf("Name:    %s\n", user.DisplayName)
	}
	fmt.Printf("Status:  %s\n", describeStatus(user))
	if user.BlockedReason != "" {
		fmt.Printf("Reason:  %s\n", user.BlockedReason)
	}
	fmt.Printf("Admin:   %v\n", user.IsAdmin)
	if !user.CreatedAt.IsZero() {
		fmt.Printf("Created: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Password set: %v\n", len(user.PasswordHash) > 0)
	return nil
}

func runUsersSuspend(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	user, err := getUserByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	user.Status = ports.StatusSuspended
	user.SuspendedUntil = time.Time{}
	if suspendFor > 0 {
		user.SuspendedUntil = time.Now().UTC().Add(suspendFor)
	}
	if err := store.Put(context.Background(), user); err != nil {
		return fmt.Errorf("suspend user: %w", err)
	}

	if user.SuspendedUntil.IsZero() {
		fmt.Printf("%s Suspended user %s indefinitely\n", checkMark, user.Email)
	} else {
		fmt.Printf("%s Suspended user %s until %s\n",
			checkMark, user.Email, user.SuspendedUntil.Format(time.RFC3339))
	}
	return nil
}

func runUsersBlock(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	user, err := getUserByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	if !confirm(fmt.Sprintf("Block user %s?", user.Email)) {
		fmt.Println("Aborted.")
		return nil
	}

	user.Status = ports.StatusBlocked
	user.BlockedReason = blockReason
	if err := store.Put(context.Background(), user); err != nil {
		return fmt.Errorf("block user: %w", err)
	}

	fmt.Printf("%s Blocked user: %s (%s)\n", checkMark, user.Email, user.ID)
	return nil
}

func runUsersUnblock(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	user, err := getUserByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	if user.Status == ports.StatusActive {
		fmt.Printf("User %s is already active\n", user.Email)
		return nil
	}

	user.Status = ports.StatusActive
	user.SuspendedUntil = time.Time{}
	user.BlockedReason = ""
	if err := store.Put(context.Background(), user); err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}

	fmt.Printf("%s Reactivated user: %s (%s)\n", checkMark, user.Email, user.ID)
	return nil
}

func runUsersSetPassword(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	user, err := getUserByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	password := userPassword
	if password == "" {
		password, err = promptPassword("New password: ")
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("password cannot be empty")
		}
	}

	hash, err := hasher.New(0).Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hash
	if err := store.Put(context.Background(), user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	fmt.Printf("%s Password updated for user: %s (%s)\n", checkMark, user.Email, user.ID)
	return nil
}

func openDatabase() (*sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver == "memory" {
		return nil, fmt.Errorf("the memory store has no persistent accounts; configure the sqlite or redis driver")
	}

	db, err := sqlite.Open(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// getUserByIDOrEmail looks the account up by email when the identifier
// contains an @, otherwise by ID.
func getUserByIDOrEmail(store *sqlite.UserStore, identifier string) (ports.User, error) {
	ctx := context.Background()
	if strings.Contains(identifier, "@") {
		return store.GetByEmail(ctx, identifier)
	}
	return store.Get(ctx, identifier)
}

func describeStatus(u ports.User) string {
	if u.Status == ports.StatusSuspended && !u.SuspendedUntil.IsZero() {
		return fmt.Sprintf("suspended until %s", u.SuspendedUntil.Format("2006-01-02 15:04"))
	}
	return u.Status
}

func confirm(message string) bool {
	fmt.Printf("? %s [y/N]: ", message)
	var input string
	fmt.Scanln(&input)
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}
