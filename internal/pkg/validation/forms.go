package validation

// SignUpInput 注册表单
type SignUpInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credentials 注册成功后用同一组凭据登录
func (in SignUpInput) Credentials() SignInInput {
	return SignInInput{Email: in.Email, Password: in.Password}
}

// SignInInput 登录表单
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PostInput 发帖表单，File 由上传组件给出，不做校验
type PostInput struct {
	Caption  string `json:"caption"`
	Location string `json:"location"`
	Tags     string `json:"tags"`
	File     any    `json:"file,omitempty"`
}

var (
	nameField     = Field{Name: "name", Rules: []Rule{MinLen(2, "Name must be at least 2 characters")}}
	usernameField = Field{Name: "username", Rules: []Rule{MinLen(8, "Username must be at least 8 characters")}}
	emailField    = Field{Name: "email", Rules: []Rule{Email("Invalid email")}}
	passwordField = Field{Name: "password", Rules: []Rule{MinLen(8, "Password must be at least 8 characters")}}
)

// SignUpSchema name ≥ 2, username ≥ 8, email, password ≥ 8
var SignUpSchema = NewSchema("sign-up", func(v map[string]string, _ map[string]any) SignUpInput {
	return SignUpInput{
		Name:     v["name"],
		Username: v["username"],
		Email:    v["email"],
		Password: v["password"],
	}
}, nameField, usernameField, emailField, passwordField)

// SignInSchema email, password ≥ 8
var SignInSchema = NewSchema("sign-in", func(v map[string]string, _ map[string]any) SignInInput {
	return SignInInput{Email: v["email"], Password: v["password"]}
}, emailField, passwordField)

// PostSchema caption 5-2200, location 2-100
var PostSchema = NewSchema("post", func(v map[string]string, raw map[string]any) PostInput {
	return PostInput{
		Caption:  v["caption"],
		Location: v["location"],
		Tags:     v["tags"],
		File:     raw["file"],
	}
},
	Field{Name: "caption", Rules: []Rule{
		MinLen(5, "Must be 5 or more characters..."),
		MaxLen(2200, "Must be less than 2200 characters..."),
	}},
	Field{Name: "file", Kind: KindAny},
	Field{Name: "location", Rules: []Rule{
		MinLen(2, "Must be more than 2 characters"),
		MaxLen(100, "Must be less than 100 characters"),
	}},
	Field{Name: "tags"},
)
