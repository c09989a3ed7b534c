package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	orghttp "opencast/contexts/identity-access/organization-service/transport/http"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "opencastctl",
		Short:         "Command-line client for the opencast identity and organizations API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newConfigureCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newProfileCmd(),
		newOrganizationsCmd(),
		newCreateOrgCmd(),
		newMembershipsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newConfigureCmd() *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Store the API base URL in ~/.opencast/config.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(apiURL) == "" {
				return fmt.Errorf("--api-url is required")
			}
			if err := saveConfig(cliConfig{APIURL: strings.TrimSpace(apiURL)}); err != nil {
				return err
			}
			cmd.Println("configuration saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "base URL of the opencast API")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store tokens in ~/.opencast/tokens.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(email) == "" {
				email = prompt("email: ")
			}
			if password == "" {
				password = prompt("password: ")
			}

			client := newAPIClient(cfg, cliTokens{})
			resp, err := client.login(strings.TrimSpace(email), password)
			if err != nil {
				return err
			}
			if err := saveTokens(cliTokens{
				AccessToken:  resp.Tokens.AccessToken,
				RefreshToken: resp.Tokens.RefreshToken,
			}); err != nil {
				return err
			}
			cmd.Printf("logged in as %s (%s)\n", resp.User.Username, resp.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := clearTokens(); err != nil {
				return err
			}
			cmd.Println("logged out")
			return nil
		},
	}
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := authedClient()
			if err != nil {
				return err
			}
			user, err := client.profile()
			if err != nil {
				return err
			}
			cmd.Printf("%s <%s>\n", user.Username, user.Email)
			if user.FullName != "" {
				cmd.Printf("name:      %s\n", user.FullName)
			}
			cmd.Printf("user id:   %s\n", user.UserID)
			cmd.Printf("superuser: %t\n", user.IsSuperuser)
			cmd.Printf("joined:    %s\n", user.DateJoined.Format("2006-01-02"))
			return nil
		},
	}
}

func newOrganizationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "organizations",
		Short: "List the organizations you belong to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := authedClient()
			if err != nil {
				return err
			}
			resp, err := client.listOrganizations()
			if err != nil {
				return err
			}
			if len(resp.Organizations) == 0 {
				cmd.Println("no organizations")
				return nil
			}
			for _, org := range resp.Organizations {
				cmd.Printf("%-24s %-20s members=%d id=%s\n", org.Name, org.Slug, org.MembersCount, org.OrganizationID)
			}
			return nil
		},
	}
}

func newCreateOrgCmd() *cobra.Command {
	var name, slug, description string
	cmd := &cobra.Command{
		Use:   "create-org",
		Short: "Create an organization with you as owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			client, err := authedClient()
			if err != nil {
				return err
			}
			org, err := client.createOrganization(orghttp.CreateOrganizationRequest{
				Name:        name,
				Slug:        slug,
				Description: description,
			})
			if err != nil {
				return err
			}
			cmd.Printf("created %s (%s) id=%s\n", org.Name, org.Slug, org.OrganizationID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "organization name")
	cmd.Flags().StringVar(&slug, "slug", "", "URL slug (derived from the name when omitted)")
	cmd.Flags().StringVar(&description, "description", "", "organization description")
	return cmd
}

func newMembershipsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "memberships",
		Short: "List your active memberships",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := authedClient()
			if err != nil {
				return err
			}
			resp, err := client.listMemberships()
			if err != nil {
				return err
			}
			if len(resp.Memberships) == 0 {
				cmd.Println("no memberships")
				return nil
			}
			for _, m := range resp.Memberships {
				cmd.Printf("%-12s org=%s joined=%s\n", m.RoleName, m.OrganizationID, m.JoinedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func authedClient() (*apiClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	tokens, err := loadTokens()
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg, tokens), nil
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
