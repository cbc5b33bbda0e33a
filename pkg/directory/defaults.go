package directory

import "github.com/getmockd/mockidp/internal/id"

// DefaultUsers returns the seeded users with freshly hashed passwords.
func DefaultUsers() ([]User, error) {
	seed := []struct {
		user     User
		password string
	}{
		{
			user: User{
				UserPrincipalName: "admin@contoso.onmicrosoft.com",
				DisplayName:       "Admin User",
				GivenName:         "Admin",
				Surname:           "User",
				Mail:              "admin@contoso.onmicrosoft.com",
				JobTitle:          "Administrator",
				Department:        "IT",
			},
			password: "Password123!",
		},
		{
			user: User{
				UserPrincipalName: "test@contoso.onmicrosoft.com",
				DisplayName:       "Test User",
				GivenName:         "Test",
				Surname:           "User",
				Mail:              "test@contoso.onmicrosoft.com",
				JobTitle:          "Developer",
				Department:        "Engineering",
			},
			password: "Test123!",
		},
	}

	users := make([]User, 0, len(seed))
	for _, s := range seed {
		hash, err := HashPassword(s.password)
		if err != nil {
			return nil, err
		}
		s.user.ID = id.UUID()
		s.user.PasswordHash = hash
		users = append(users, s.user)
	}
	return users, nil
}

// DefaultApplications returns the seeded applications.
func DefaultApplications() []Application {
	return []Application{
		{
			AppID:        "test-app-123",
			DisplayName:  "Test Web Application",
			ClientSecret: "test-secret",
			RedirectURIs: []string{
				"http://localhost:3029/callback",
				"http://localhost:3029/auth",
			},
			AllowedScopes: []string{"openid", "profile", "email", "User.Read"},
		},
		{
			AppID:         "service-app-456",
			DisplayName:   "Test Service Application",
			ClientSecret:  "service-secret",
			RedirectURIs:  []string{},
			AllowedScopes: []string{"api://.default", "https://graph.microsoft.com/.default"},
		},
	}
}
